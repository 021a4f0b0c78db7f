package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mtech-kids/explore-quiz/internal/rbac"
)

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"` // plaintext on input only
}

// POST /users/bulk: teacher/admin seeds a classroom roster from a JSON
// array. Passwords are bcrypt-hashed before they hit the table.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array", http.StatusBadRequest)
			return
		}
		n := 0
		for _, u := range rows {
			if u.Username == "" {
				continue
			}
			if u.Role == "" {
				u.Role = "student"
			}
			if u.ID == "" {
				u.ID = uuid.NewString()
			}
			var hash []byte
			if u.Password != "" {
				h, err := bcrypt.GenerateFromPassword([]byte(u.Password), 12)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				hash = h
			}
			_, err := db.ExecContext(r.Context(), `INSERT INTO users (id,username,role,password_hash)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (username) DO UPDATE SET role=EXCLUDED.role,
					password_hash=CASE WHEN EXCLUDED.password_hash='' THEN users.password_hash ELSE EXCLUDED.password_hash END`,
				u.ID, u.Username, u.Role, string(hash))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			n++
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	}
}

// GET /users?limit=100&offset=0
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
		rows, err := db.QueryContext(r.Context(),
			`SELECT id,username,role FROM users ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /users/change-password
func ChangePasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.NewPassword == "" {
			http.Error(w, "new password required", http.StatusBadRequest)
			return
		}

		var storedHash string
		err := db.QueryRowContext(r.Context(),
			`SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&storedHash)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.OldPassword)) != nil {
			http.Error(w, "incorrect old password", http.StatusForbidden)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
