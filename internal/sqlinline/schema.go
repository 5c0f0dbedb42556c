package sqlinline

// QCreateSchema is idempotent and applied by both binaries at startup.
const QCreateSchema = `--sql 3c1d52f4-8e0b-4a0a-9d57-6b2f0f7e21a9
create extension if not exists pgcrypto;

create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists generation_jobs (
    id uuid primary key,
    mode text not null,
    model text not null,
    prompt text not null,
    request_json jsonb not null,
    status text not null,
    error_kind text,
    error_message text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create index if not exists generation_jobs_queue_idx on generation_jobs (status, created_at);

create table if not exists generation_results (
    id uuid primary key,
    job_id uuid not null references generation_jobs(id) on delete cascade,
    idx int not null,
    storage_key text not null,
    remote_uri text,
    mime text not null,
    bytes bigint not null default 0,
    prompt text not null,
    created_at timestamptz not null default now(),
    unique (job_id, idx)
);
`
