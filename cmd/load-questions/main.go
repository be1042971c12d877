package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/db"
	"github.com/LuckyMachines/hivemind/internal/question"
)

func main() {
	filePath := flag.String("file", "questions/questions.csv", "path to questions csv")
	pack := flag.String("pack", "default", "question pack name")
	migrate := flag.Bool("migrate", false, "auto-migrate tables before loading")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("failed to open questions: %v", err)
	}
	questions, err := question.ReadCSV(file)
	_ = file.Close()
	if err != nil {
		log.Fatalf("failed to read questions: %v", err)
	}
	if len(questions) == 0 {
		log.Fatalf("no questions found in %s", *filePath)
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if *migrate {
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
	}

	inserted, err := question.NewLibrary(conn, *pack).Store(context.Background(), questions)
	if err != nil {
		log.Fatalf("failed to store questions after %d inserts: %v", inserted, err)
	}
	log.Printf("loaded questions pack=%s read=%d inserted=%d", *pack, len(questions), inserted)
}
