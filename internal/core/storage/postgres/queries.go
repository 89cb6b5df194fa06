package postgres

const (
	querySaveEvent = `
		INSERT INTO sale_events (
			event_id, store_id, product_family, occurred_at,
			quantity, unit_price, on_promotion, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING ingest_seq
	`

	queryReadRange = `
		SELECT ingest_seq, event_id, store_id, product_family, occurred_at,
		       quantity, unit_price, on_promotion, ingested_at
		FROM sale_events
		WHERE ingest_seq > $1
		ORDER BY ingest_seq ASC
		LIMIT $2
	`

	queryGetSnapshot = `
		SELECT total_sales, total_units, transaction_count, last_updated
		FROM feature_snapshots
		WHERE bucket_kind = $1 AND bucket_key = $2
	`

	// Additive merge as a single atomic increment. Concurrent flushes
	// cannot lose updates the way read-modify-write would.
	queryMergeSnapshot = `
		INSERT INTO feature_snapshots (
			bucket_kind, bucket_key, total_sales, total_units,
			transaction_count, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bucket_kind, bucket_key)
		DO UPDATE SET
			total_sales       = feature_snapshots.total_sales + EXCLUDED.total_sales,
			total_units       = feature_snapshots.total_units + EXCLUDED.total_units,
			transaction_count = feature_snapshots.transaction_count + EXCLUDED.transaction_count,
			last_updated      = EXCLUDED.last_updated
	`

	querySelectCursorForUpdate = `
		SELECT cursor
		FROM consumer_cursors
		WHERE consumer_group = $1
		FOR UPDATE
	`

	queryInitCursorRow = `
		INSERT INTO consumer_cursors (consumer_group, cursor, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (consumer_group) DO NOTHING
	`

	queryUpdateCursor = `
		UPDATE consumer_cursors
		SET cursor = $1, updated_at = $2
		WHERE consumer_group = $3
	`

	queryReadCursor = `SELECT cursor FROM consumer_cursors WHERE consumer_group = $1`

	queryFilterSeen = `SELECT event_id FROM seen_events WHERE event_id = ANY($1)`

	queryInsertSeen = `
		INSERT INTO seen_events (event_id, seen_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`

	queryPurgeSeen = `DELETE FROM seen_events WHERE seen_at < $1`

	queryAppendBufferRow = `
		INSERT INTO training_buffer (
			event_id, store_id, product_family, occurred_at,
			quantity, unit_price, on_promotion, oil_price, is_holiday, appended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// FIFO cap: keep only the newest $1 rows.
	queryEvictBufferOverflow = `
		DELETE FROM training_buffer
		WHERE seq NOT IN (
			SELECT seq FROM training_buffer ORDER BY seq DESC LIMIT $1
		)
	`

	querySnapshotBuffer = `
		SELECT seq, event_id, store_id, product_family, occurred_at,
		       quantity, unit_price, on_promotion, oil_price, is_holiday
		FROM training_buffer
		ORDER BY seq ASC
	`

	queryClearBuffer = `DELETE FROM training_buffer WHERE seq <= $1`

	queryLoadHistory = `
		SELECT event_id, store_id, product_family, occurred_at,
		       quantity, unit_price, on_promotion, oil_price, is_holiday
		FROM training_history
		ORDER BY occurred_at ASC, event_id ASC
	`

	queryMergeHistoryRow = `
		INSERT INTO training_history (
			event_id, store_id, product_family, occurred_at,
			quantity, unit_price, on_promotion, oil_price, is_holiday, merged_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`
)
