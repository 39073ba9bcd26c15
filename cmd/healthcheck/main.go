// main.go
//
// Real-time content versioning and sync service for the EstatePress admin back office
// Copyright (c) 2026 EstatePress <info@estatepress.dev>
//
// This file is part of sitesync.
// sitesync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// sitesync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with sitesync.
// If not, see <https://www.gnu.org/licenses/>.

// Healthcheck probe for container orchestrators. Asks the running server for
// its health report rather than opening its own database connections, so the
// probe reflects what the service can actually do.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/estatepress/sitesync/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + cfg.Port + "/api/health")
	if err != nil {
		log.Fatalf("Health endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read health response: %v", err)
	}

	// Re-indent for operator eyes
	var report map[string]interface{}
	if err := json.Unmarshal(body, &report); err != nil {
		log.Fatalf("Malformed health response: %v", err)
	}
	output, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(output))

	// A degraded service is still serving from cache, so 200 means alive.
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
	os.Exit(0)
}
