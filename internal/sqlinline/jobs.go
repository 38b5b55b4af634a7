// Package sqlinline holds every SQL statement the repositories and the queue
// execute. Each constant starts with a --sql <uuid> audit marker; the sqllint
// tool under internal/tools enforces the convention.
package sqlinline

const QInsertJob = `--sql 6a26187c-9b5f-4289-801c-3ef8447f66e3
insert into jobs (id, user_id, upload_asset_id, status, logs)
values ($1, $2, $3, $4, $5);
`

const QSelectJobByID = `--sql d752ec21-9edf-4a46-aacb-dc1ada253c23
select id, user_id, upload_asset_id, status, logs, error_message, result_json, created_at, updated_at, completed_at
from jobs
where id = $1;
`

const QUpdateJobStatus = `--sql cfb6fc9f-84a3-4e48-82bf-b36aebc0cf64
update jobs
set status = $2,
    logs = $3,
    error_message = case when $2 in ('done', 'error') then error_message else '' end,
    result_json = case when $2 in ('done', 'error') then result_json else null end,
    completed_at = case when $2 in ('done', 'error') then completed_at else null end,
    updated_at = now()
where id = $1;
`

const QCompleteJob = `--sql 36c33935-8de3-4784-8223-3a26c05485ec
update jobs
set status = $2, logs = $3, result_json = $4, error_message = '', updated_at = now(), completed_at = now()
where id = $1;
`

const QFailJob = `--sql c7ad781c-63b2-43ab-bcaa-c64ffd609bd4
update jobs
set status = $2, error_message = $3, updated_at = now(), completed_at = now()
where id = $1;
`
