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

// Synctail connects to a running server's sync channel and prints every
// event it receives, one JSON object per line. Useful for watching what
// editors broadcast without opening the admin UI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "localhost:3000", "server host:port")
	var name string
	flag.StringVar(&name, "name", "synctail", "subscriber name reported to the hub")
	flag.Parse()

	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     "/ws",
		RawQuery: "origin=" + uuid.NewString() + "&name=" + url.QueryEscape(name),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", u.String(), err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			// Re-indent so each frame is one readable line
			var frame map[string]interface{}
			if err := json.Unmarshal(raw, &frame); err != nil {
				fmt.Println(string(raw))
				continue
			}
			line, _ := json.Marshal(frame)
			fmt.Println(string(line))
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case <-sigs:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
