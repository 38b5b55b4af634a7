package sqlinline

const QEnqueueDelivery = `--sql e09902c3-1a61-4db3-b56b-e71590bf181b
insert into extraction_queue (id, job_id, payload, status, max_attempts, run_at)
values ($1, $2, $3, $4, $5, now());
`

const QClaimDelivery = `--sql 168bb76a-6faa-45c0-a4ce-ba8ca4bc6d0d
with next_delivery as (
    select id
    from extraction_queue
    where status = $1 and run_at <= now()
    order by created_at asc
    for update skip locked
    limit 1
)
update extraction_queue q
set status = $2,
    attempts = attempts + 1,
    locked_by = $3,
    lease_expires_at = now() + make_interval(secs => $4),
    updated_at = now()
where q.id in (select id from next_delivery)
returning q.id, q.payload, q.attempts;
`

const QHeartbeatDelivery = `--sql 4721ec5f-833f-4727-8416-ee6eecce9187
update extraction_queue
set lease_expires_at = now() + make_interval(secs => $2), updated_at = now()
where id = $1 and status = $3;
`

const QCompleteDelivery = `--sql 37021734-329d-415f-beca-55cdd690d648
update extraction_queue
set status = $2, locked_by = null, lease_expires_at = null, updated_at = now(), completed_at = now()
where id = $1;
`

const QRetryDelivery = `--sql afe4e47a-a13e-4139-9d56-88267ea226c1
update extraction_queue
set status = case when attempts >= max_attempts then $2 else $3 end,
    run_at = now() + make_interval(secs => $4 * power(2, greatest(attempts - 1, 0))),
    locked_by = null,
    lease_expires_at = null,
    last_error = $5,
    updated_at = now(),
    completed_at = case when attempts >= max_attempts then now() else completed_at end
where id = $1
returning status;
`

const QFailDelivery = `--sql 51790c71-56a6-4076-a687-ca9cb147178b
update extraction_queue
set status = $2, locked_by = null, lease_expires_at = null, last_error = $3, updated_at = now(), completed_at = now()
where id = $1;
`

const QReclaimStalledDeliveries = `--sql 64b05f90-9d84-4ae0-b4ab-3385b19e5d90
update extraction_queue
set stall_count = stall_count + 1,
    status = case when stall_count + 1 > $2 then $3 else $4 end,
    last_error = case when stall_count + 1 > $2 then 'stalled delivery exceeded stall budget' else last_error end,
    completed_at = case when stall_count + 1 > $2 then now() else completed_at end,
    locked_by = null,
    lease_expires_at = null,
    run_at = now(),
    updated_at = now()
where status = $1 and lease_expires_at < now();
`

const QSweepDeliveries = `--sql 5c9805da-c215-40bd-abed-182f8001ffcc
delete from extraction_queue
where (status = $1 and completed_at < now() - make_interval(secs => $3))
   or (status = $2 and completed_at < now() - make_interval(secs => $4));
`
