package sqlinline

const QInsertGenerationResult = `--sql 7a618435-99c3-45dc-a3f6-1f8864df363e
insert into generation_results (id, job_id, idx, storage_key, remote_uri, mime, bytes, prompt, created_at)
values (gen_random_uuid(), $1::uuid, $2::int, $3::text, $4::text, $5::text, $6::bigint, $7::text, now())
returning id::text, created_at;
`

const QSelectResultsByJob = `--sql b2777b2c-4daf-4a41-b13e-6d0cdda29ec7
select id::text, job_id::text, idx, storage_key, coalesce(remote_uri, ''), mime, bytes, prompt, created_at
from generation_results
where job_id = $1::uuid
order by idx asc;
`

const QSelectResult = `--sql fe4acd0d-2237-4ebe-8038-3d884d8e8460
select id::text, job_id::text, idx, storage_key, coalesce(remote_uri, ''), mime, bytes, prompt, created_at
from generation_results
where id = $1::uuid;
`
