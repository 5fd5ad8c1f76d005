// crossvr-decode summarizes state messages from the VR runtime bridge,
// either from a live ZMQ endpoint or from .cbor files captured earlier.
// Debugging aid for bringing up a new runtime-side publisher.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

func main() {
	var (
		endpoint = flag.String("endpoint", "", "ZMQ endpoint to subscribe to")
		path     = flag.String("path", "", "Path to a .cbor file or a directory of them")
		limit    = flag.Int("limit", 10, "Max number of messages to print per type")
	)
	flag.Parse()

	if (*endpoint == "") == (*path == "") {
		log.Fatal("exactly one of -endpoint or -path is required")
	}

	counts := map[string]int{}
	printed := map[string]int{}

	handle := func(origin string, data []byte) {
		var payload map[string]any
		if err := cbor.Unmarshal(data, &payload); err != nil {
			log.Printf("decode %s: %v", origin, err)
			return
		}
		msgType, _ := payload["type"].(string)
		if msgType == "" {
			msgType = "unknown"
		}
		counts[msgType]++
		if printed[msgType] >= *limit {
			return
		}
		printed[msgType]++
		pretty, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			log.Printf("encode %s: %v", origin, err)
			return
		}
		fmt.Printf("%s %s:\n%s\n", msgType, origin, pretty)
	}

	if *path != "" {
		files, err := listFiles(*path)
		if err != nil {
			log.Fatalf("list files: %v", err)
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				log.Printf("read %s: %v", file, err)
				continue
			}
			handle(file, data)
		}
	} else {
		if err := subscribe(*endpoint, handle); err != nil {
			log.Fatalf("subscribe: %v", err)
		}
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Print("summary:")
	for _, t := range types {
		fmt.Printf(" %s=%d", t, counts[t])
	}
	fmt.Println()
}

func subscribe(endpoint string, handle func(string, []byte)) error {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return err
	}
	defer socket.Close()
	if err := socket.SetSubscribe(""); err != nil {
		return err
	}
	if err := socket.SetRcvtimeo(500 * time.Millisecond); err != nil {
		return err
	}
	if err := socket.Connect(endpoint); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		msg, err := socket.RecvBytes(0)
		if err != nil {
			continue
		}
		n++
		handle(fmt.Sprintf("message %d", n), msg)
	}
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cbor" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
