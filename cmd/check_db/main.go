package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"courseboard-backend/internal/database"
)

// Quick schema sanity check for operators: verifies the connection, the
// whiteboard tables, and the stroke replay index.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("Connected to database")
	fmt.Println()

	tables := []string{
		"users",
		"courses",
		"course_memberships",
		"whiteboard_sessions",
		"whiteboard_strokes",
		"whiteboard_events",
	}
	for _, table := range tables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_name = ?
			)
		`
		if err := db.Raw(query, table).Scan(&exists).Error; err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}
		status := "MISSING"
		if exists {
			status = "ok"
		}
		fmt.Printf("table %-22s %s\n", table, status)
	}
	fmt.Println()

	var indexExists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE tablename = 'whiteboard_strokes'
			AND indexname = 'idx_whiteboard_strokes_session_seq'
		)
	`
	if err := db.Raw(query).Scan(&indexExists).Error; err != nil {
		log.Fatalf("Failed to check stroke index: %v", err)
	}
	fmt.Printf("index idx_whiteboard_strokes_session_seq: %v\n", indexExists)
	fmt.Println()

	counts := map[string]string{
		"whiteboard_sessions": "sessions",
		"whiteboard_strokes":  "strokes",
		"whiteboard_events":   "events",
	}
	for table, label := range counts {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			log.Printf("Failed to count %s: %v", table, err)
			continue
		}
		fmt.Printf("%-10s %d\n", label, n)
	}
}
