package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	godotenv.Load()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./facescout.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println("🔍 Checking Analysis Results")
	fmt.Println("============================")

	if os.Getenv("MODEL_API_KEY") == "" {
		fmt.Println("⚠️  WARNING: MODEL_API_KEY is not set!")
		fmt.Println("   Analyses will fail until a key is configured.")
	} else {
		fmt.Println("✅ Model API configured")
		if baseURL := os.Getenv("MODEL_BASE_URL"); baseURL != "" {
			fmt.Printf("   Base URL: %s\n", baseURL)
		}
		if model := os.Getenv("MODEL_NAME"); model != "" {
			fmt.Printf("   Model: %s\n", model)
		}
	}
	fmt.Println()

	var analysisCount int
	err = db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&analysisCount)
	if err != nil {
		fmt.Println("❌ No analyses table found (server not yet run)")
		return
	}
	fmt.Printf("📹 Total analyses: %d\n", analysisCount)

	var snapshotCount int
	db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&snapshotCount)
	fmt.Printf("🖼️  Total extracted frames: %d\n\n", snapshotCount)

	rows, err := db.Query(`
		SELECT id, status, is_present, confidence, reason, duration, verdict_json
		FROM analyses
		ORDER BY created_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Fatal("Failed to query analyses:", err)
	}
	defer rows.Close()

	fmt.Println("📊 Recent Analyses:")
	fmt.Println("-------------------")

	count := 0
	for rows.Next() {
		var id, status, reason, verdictJSON string
		var isPresent bool
		var confidence sql.NullFloat64
		var duration float64

		err := rows.Scan(&id, &status, &isPresent, &confidence, &reason, &duration, &verdictJSON)
		if err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		count++
		fmt.Printf("\n🎬 Analysis %s [%s]\n", id, status)
		fmt.Printf("   Duration: %.1fs\n", duration)

		if status == "complete" {
			if isPresent {
				fmt.Println("   👤 Person: present")
			} else {
				fmt.Println("   👤 Person: not found")
			}
			if confidence.Valid {
				fmt.Printf("   Confidence: %.2f\n", confidence.Float64)
			}
		}

		if reason != "" {
			fmt.Printf("   📝 Reason: %.100s\n", reason)
		}

		if verdictJSON != "" {
			var verdict struct {
				Identifications []struct {
					Timestamp float64 `json:"timestamp"`
				} `json:"identifications"`
			}
			if err := json.Unmarshal([]byte(verdictJSON), &verdict); err == nil && len(verdict.Identifications) > 0 {
				fmt.Printf("   ⏱️  Timestamps: ")
				for i, ident := range verdict.Identifications {
					if i > 0 {
						fmt.Print(", ")
					}
					fmt.Printf("%.1fs", ident.Timestamp)
				}
				fmt.Println()
			}
		}
	}

	if count == 0 {
		fmt.Println("No analyses found yet. Upload a photo and video to test!")
	} else {
		fmt.Printf("\n✅ Found %d recent analyses.\n", count)
	}
}
