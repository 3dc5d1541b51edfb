package sqlstore

import (
	// Registered backends. The embedded backend needs no external service;
	// postgres is selected by the ledger driver config.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)
