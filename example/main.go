package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/mattn/go-sqlite3"

	queryinspect "github.com/fllarpy/query-inspect"
	sqlinstrumentation "github.com/fllarpy/query-inspect/instrumentation/sql"
	"github.com/fllarpy/query-inspect/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Default()
	cfg.Enabled = true
	cfg.LogStats = true
	cfg.LogDuplicates = true
	cfg.LogTracebacks = true
	cfg.AbsoluteLimit = 100 // ms
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid inspector config: %v", err)
	}

	inspector := queryinspect.New(cfg, logger)

	sqlinstrumentation.Register("sqlite3-inspect", &sqlite3.SQLiteDriver{})
	db, err := sql.Open("sqlite3-inspect", "file:example.db?cache=shared&mode=memory")
	if err != nil {
		log.Fatalf("failed to open instrumented db connection: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		log.Fatalf("failed to create table: %v", err)
	}
	for i := 1; i <= 10; i++ {
		if _, err := db.Exec(`INSERT INTO users (id, name) VALUES (?, ?)`, i, fmt.Sprintf("user-%d", i)); err != nil {
			log.Fatalf("failed to seed users: %v", err)
		}
	}

	r := chi.NewRouter()
	r.Use(inspector.Middleware())

	r.Get("/users", listUsers(db))
	r.Get("/n-plus-one", nPlusOne(db))
	r.Handle(cfg.DebugEndpoint, inspector.MetricsHandler())

	logger.Info("starting example server",
		"addr", ":8080",
		"endpoints", []string{"/users", "/n-plus-one", cfg.DebugEndpoint})

	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("could not start server: %v", err)
	}
}

// listUsers fetches all users in one query.
func listUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(), "SELECT id, name FROM users")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id int
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			fmt.Fprintf(w, "%d: %s\n", id, name)
		}
	}
}

// nPlusOne fetches users one row at a time, so every response carries a
// duplicate-query report: the statements differ only in the id literal.
func nPlusOne(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for i := 1; i <= 10; i++ {
			row := db.QueryRowContext(r.Context(), fmt.Sprintf("SELECT name FROM users WHERE id = %d", i))
			var name string
			if err := row.Scan(&name); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			fmt.Fprintf(w, "%s\n", name)
		}
	}
}
