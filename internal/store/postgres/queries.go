package postgres

const occurrenceColumns = `
    id, series_id, title, meeting_date, start_time, duration_minutes,
    remote_id, join_url, status, recurring, created_at, updated_at`

const queryFindFutureOccurrence = `
SELECT` + occurrenceColumns + `
FROM occurrences
WHERE series_id = $1
  AND meeting_date >= $2::date
  AND NOT (status = ANY($3))
ORDER BY meeting_date, start_time
LIMIT 1
`

const queryInsertOccurrence = `
INSERT INTO occurrences (` + occurrenceColumns + `)
VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12)
`

const queryGetOccurrence = `
SELECT` + occurrenceColumns + `
FROM occurrences
WHERE id = $1
`

const queryUpdateOccurrence = `
UPDATE occurrences
SET meeting_date = $2::date, start_time = $3, updated_at = $4
WHERE id = $1
`

const queryDeleteOccurrence = `
DELETE FROM occurrences WHERE id = $1
`

const queryListUpcoming = `
SELECT` + occurrenceColumns + `
FROM occurrences
WHERE meeting_date >= $1::date
  AND status = 'scheduled'
ORDER BY meeting_date, start_time, series_id
LIMIT $2
`

const queryCompletePastOccurrences = `
UPDATE occurrences
SET status = 'completed', updated_at = $2
WHERE status = 'scheduled'
  AND meeting_date < $1::date
`
