package sqlinline

const QUpsertAsset = `--sql 336a1462-2513-43d6-8b30-055818bda4cf
insert into assets (id, owner_type, owner_id, file_url, file_type, file_size, original_name, kind, job_id)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
on conflict (id) do update
set file_url = excluded.file_url, file_size = excluded.file_size;
`

const QSelectAssetsByJob = `--sql 497c3b5b-ec61-41c6-88d7-0197d4c32d56
select id, owner_type, owner_id, file_url, file_type, file_size, original_name, kind, job_id, created_at
from assets
where job_id = $1
order by created_at asc;
`
