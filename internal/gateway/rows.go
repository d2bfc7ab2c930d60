package gateway

import (
	"database/sql"
	"sync"
)

// Rows is a row cursor. Close must be called to release the execution lock
// taken by Gateway.ExecuteReader.
type Rows struct {
	*sql.Rows
	release func()
	once    sync.Once
}

func newRows(rows *sql.Rows, release func()) *Rows {
	return &Rows{Rows: rows, release: release}
}

// Close closes the cursor and releases whatever the reader held.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
	return err
}
