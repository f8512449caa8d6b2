package sqlinline

const QInsertLinkedInPost = `--sql 7e259080-8723-4ff8-957b-5bcf3fd65d36
insert into linkedin_posts (id, user_id, content, status, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, 'draft', now(), now())
returning id::text;
`

const QListLinkedInPosts = `--sql 030d0c5f-e5b5-40c2-8c04-1fd52b0feffc
select id::text, user_id, content, status, created_at, updated_at
from linkedin_posts
where user_id = $1::text
order by created_at desc
limit 200;
`

const QSelectLinkedInPost = `--sql c3663e4d-270c-4dec-97bf-0dcb8d5cb636
select id::text, user_id, content, status, created_at, updated_at
from linkedin_posts
where id = $1::uuid
  and user_id = $2::text
limit 1;
`

const QUpdateLinkedInPost = `--sql fdb63548-38bf-4029-825e-39672a0dc8fe
update linkedin_posts
set content = $3::text,
    updated_at = now()
where id = $1::uuid
  and user_id = $2::text
returning id::text, user_id, content, status, created_at, updated_at;
`

const QDeleteLinkedInPost = `--sql cd0b8e44-d0b3-434e-937d-f0cf13646522
delete from linkedin_posts
where id = $1::uuid
  and user_id = $2::text;
`
