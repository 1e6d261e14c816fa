package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRow struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"` // usually "learner"
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	Department string `json:"department,omitempty"`
	Password   string `json:"password,omitempty"` // plaintext optional (LAN-only)
}

// BulkUpsertUsersHandler takes a JSON array of staff accounts. The
// profile fields feed the credential snapshot at issuance time.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "expected JSON array of users")
			return
		}
		ins := 0
		for _, row := range rows {
			if row.Username == "" {
				continue
			}
			if row.ID == "" {
				row.ID = uuid.NewString()
			}
			if row.Role == "" {
				row.Role = "learner"
			}
			if err := upsertUser(r.Context(), db, row); err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "user upsert failed")
				return
			}
			ins++
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": ins})
	}
}

func upsertUser(ctx context.Context, db *sql.DB, row userRow) error {
	hash := ""
	if row.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(row.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hash = string(h)
	}
	_, err := db.ExecContext(ctx, `INSERT INTO users (id,username,pass_hash,role,name,country,department)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (username) DO UPDATE SET role=EXCLUDED.role, name=EXCLUDED.name,
			country=EXCLUDED.country, department=EXCLUDED.department,
			pass_hash=CASE WHEN EXCLUDED.pass_hash='' THEN users.pass_hash ELSE EXCLUDED.pass_hash END`,
		row.ID, row.Username, hash, row.Role, row.Name, row.Country, row.Department)
	return err
}

func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role,name,country,department FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role,name,country,department FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "query failed")
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Name, &u.Country, &u.Department); err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "scan failed")
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
