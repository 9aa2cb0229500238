package main

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/reachykit/geno/internal/db"
)

func openDB() (*sql.DB, string, func(), error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, "", func() {}, err
	}
	genoDir := filepath.Join(workDir, ".geno")
	if err := os.MkdirAll(genoDir, 0o755); err != nil {
		return nil, "", func() {}, err
	}
	dbPath := filepath.Join(genoDir, "geno.db")
	storeDB, err := db.Open(dbPath)
	if err != nil {
		return nil, "", func() {}, err
	}
	return storeDB, workDir, func() { _ = storeDB.Close() }, nil
}
