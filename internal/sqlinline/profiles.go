package sqlinline

const QSelectOnboardingAnswers = `--sql f5718154-f3ff-48af-9571-44a0a9e83996
select coalesce(question1, ''), coalesce(question2, ''), coalesce(question3, ''), coalesce(question4, '')
from onboarding
where user_id = $1::text
limit 1;
`

const QSelectOnboardingStyle = `--sql 461762bb-de28-4476-a0a9-00f04f7b7955
select coalesce(question4, '')
from onboarding
where user_id = $1::text
limit 1;
`
