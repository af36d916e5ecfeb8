package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/querypilot/querypilot/pkg/models"
)

func TestDetectKind(t *testing.T) {
	sc := NewStatementClassifier()

	tests := []struct {
		input string
		want  models.QueryKind
	}{
		{"  select * from x", models.KindSelect},
		{"SELECT 1", models.KindSelect},
		{"insert into t values (1)", models.KindInsert},
		{"UPDATE t SET a = 1", models.KindUpdate},
		{"delete from t where id = 1", models.KindDelete},
		{"create table t (id int)", models.KindDDL},
		{"ALTER TABLE t ADD COLUMN c INT", models.KindDDL},
		{"DROP TABLE t", models.KindDDL},
		{"TRUNCATE TABLE t", models.KindDDL},
		{"RENAME TABLE a TO b", models.KindDDL},
		{"SHOW TABLES", models.KindOther},
		{"SET autocommit = 0", models.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, sc.DetectKind(tt.input))
		})
	}
}

func TestExtractTable(t *testing.T) {
	sc := NewStatementClassifier()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"alter", "ALTER TABLE users ADD COLUMN age INT", "users"},
		{"alter backticked", "ALTER TABLE `users` ADD COLUMN age INT", "users"},
		{"alter qualified", "ALTER TABLE shop.orders ADD INDEX idx_a (a)", "shop.orders"},
		{"create", "CREATE TABLE IF NOT EXISTS events (id INT)", "events"},
		{"drop", "DROP TABLE IF EXISTS old_events", "old_events"},
		{"truncate", "TRUNCATE sessions", "sessions"},
		{"rename", "RENAME TABLE a TO b", "a"},
		{"delete", "DELETE FROM orders WHERE id = 1", "orders"},
		{"insert", "INSERT INTO logs (msg) VALUES ('x')", "logs"},
		{"insert ignore", "INSERT IGNORE INTO logs VALUES (1)", "logs"},
		{"update", "UPDATE accounts SET balance = 0", "accounts"},
		{"select", "SELECT * FROM payments WHERE id > 5", "payments"},
		{"no table", "SELECT 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sc.ExtractTable(tt.input))
		})
	}
}

func TestFlagDangerous(t *testing.T) {
	sc := NewStatementClassifier()

	tests := []struct {
		name      string
		input     string
		dangerous bool
	}{
		{"delete without where", "DELETE FROM orders", true},
		{"delete with where", "DELETE FROM orders WHERE id=1", false},
		{"update without where", "UPDATE t SET a = 1", true},
		{"update with where", "UPDATE t SET a = 1 WHERE id = 1", false},
		{"drop table", "DROP TABLE users", true},
		{"truncate", "TRUNCATE TABLE users", true},
		{"plain select", "SELECT * FROM orders", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dangerous, reason := sc.FlagDangerous(tt.input)
			assert.Equal(t, tt.dangerous, dangerous)
			if tt.dangerous {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestCheckBalance(t *testing.T) {
	sc := NewStatementClassifier()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"balanced", "INSERT INTO t (a, b) VALUES (1, 2)", false},
		{"parens inside string ignored", "SELECT ':-)' FROM t", false},
		{"missing close paren", "INSERT INTO t (a, b VALUES (1, 2", true},
		{"extra close paren", "SELECT 1)", true},
		{"unterminated string", "SELECT 'abc FROM t", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sc.CheckBalance(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
