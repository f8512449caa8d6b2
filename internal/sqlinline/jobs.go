package sqlinline

const QInsertGenerationJob = `--sql ad95f31a-f5a7-4dce-bf56-0225dd51d23d
insert into generation_jobs (id, user_id, mode, status, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, 'pending', now(), now())
returning id::text, user_id, mode, status, created_at, updated_at;
`

const QSelectGenerationJob = `--sql d42d671a-e084-495f-a459-bd45d4e66367
select id::text, user_id, mode, status, post_id, content, error, error_code, created_at, updated_at
from generation_jobs
where id = $1::uuid
limit 1;
`

// QTransitionGenerationJob only updates rows still in one of the allowed
// source states ($7), so a second terminal write affects zero rows.
const QTransitionGenerationJob = `--sql c9ba5612-7a9b-42f9-a286-d40275dc6ef5
update generation_jobs
set status = $2::text,
    post_id = coalesce($3::text, post_id),
    content = coalesce($4::text, content),
    error = coalesce($5::text, error),
    error_code = coalesce($6::text, error_code),
    updated_at = now()
where id = $1::uuid
  and status = any($7::text[]);
`

const QEvictTerminalGenerationJobs = `--sql 41e38f88-f63b-4757-a5df-9a33b782b7be
delete from generation_jobs
where status in ('completed', 'failed')
  and updated_at < $1::timestamptz;
`
