package sqlinline

const QEnqueueGenerationJob = `--sql 7de15202-4f9f-45e1-9a6d-f3f4306700aa
insert into generation_jobs (id, mode, model, prompt, request_json, status, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::jsonb, 'QUEUED', now(), now())
returning id::text;
`

const QClaimGenerationJob = `--sql 07bc701f-2aff-480d-af72-e43d7f03b758
with next_job as (
    select id
    from generation_jobs
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update generation_jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id, mode, status, model, prompt, request_json, created_at, updated_at
)
select id::text, mode, status, model, prompt, request_json, created_at, updated_at from updated;
`

const QCompleteGenerationJob = `--sql 7fb57c6a-29ea-4c36-8b19-2c576c3d35e8
update generation_jobs
set status = 'SUCCEEDED', error_kind = null, error_message = null, updated_at = now()
where id = $1::uuid;
`

const QFailGenerationJob = `--sql f82b0f5b-545c-4feb-9472-c2d3b160223f
update generation_jobs
set status = 'FAILED', error_kind = $2::text, error_message = $3::text, updated_at = now()
where id = $1::uuid;
`

const QSelectGenerationJob = `--sql db14760d-03eb-4732-a466-1884e253911b
select id::text, mode, status, model, prompt, coalesce(error_kind, ''), coalesce(error_message, ''), created_at, updated_at
from generation_jobs
where id = $1::uuid;
`

// QRequeueStaleJobs returns RUNNING jobs abandoned by a crashed worker to the queue.
const QRequeueStaleJobs = `--sql 2afde03d-7ecb-4f6b-9de7-a543e2df8be6
update generation_jobs
set status = 'QUEUED', updated_at = now()
where status = 'RUNNING' and updated_at < now() - ($1::int * interval '1 second');
`
