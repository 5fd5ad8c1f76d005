// crossvr-trials inspects an export root: one line per trial directory
// with per-channel row counts and the recorded time span.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"crossvr-capture-go/internal/export"
	"crossvr-capture-go/internal/types"
)

func main() {
	root := flag.String("root", "data/raw", "Export root to inspect")
	flag.Parse()

	entries, err := os.ReadDir(*root)
	if err != nil {
		log.Fatalf("read export root: %v", err)
	}

	var ids []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(entry.Name())
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if len(ids) == 0 {
		fmt.Printf("no trials in %s\n", *root)
		return
	}

	totalRows := 0
	for _, id := range ids {
		dir := filepath.Join(*root, strconv.Itoa(id))
		parts := make([]string, 0, len(types.Channels))
		var first, last float64
		haveSpan := false
		for _, ch := range types.Channels {
			rows, lo, hi, err := scanChannel(filepath.Join(dir, ch.Filename()))
			if err != nil {
				parts = append(parts, fmt.Sprintf("%s=error(%v)", ch, err))
				continue
			}
			if rows < 0 {
				continue // channel not recorded
			}
			parts = append(parts, fmt.Sprintf("%s=%d", ch, rows))
			totalRows += rows
			if rows > 0 {
				if !haveSpan || lo < first {
					first = lo
				}
				if !haveSpan || hi > last {
					last = hi
				}
				haveSpan = true
			}
		}
		line := fmt.Sprintf("trial %d: %s", id, strings.Join(parts, " "))
		if haveSpan {
			line += fmt.Sprintf(" span=%.3fs", last-first)
		}
		fmt.Println(line)
	}
	fmt.Printf("summary: trials=%d rows=%d\n", len(ids), totalRows)
}

// scanChannel counts rows and reads the first-column time span of one
// channel file. Returns rows=-1 when the file does not exist, which means
// the channel was not recorded for that trial.
func scanChannel(path string) (rows int, first, last float64, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return -1, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		timeField, _, _ := strings.Cut(line, export.Separator)
		t, err := strconv.ParseFloat(timeField, 64)
		if err != nil {
			return rows, first, last, fmt.Errorf("row %d: bad time %q", rows+1, timeField)
		}
		if rows == 0 {
			first = t
		}
		last = t
		rows++
	}
	return rows, first, last, scanner.Err()
}
