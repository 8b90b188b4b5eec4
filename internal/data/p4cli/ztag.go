package p4cli

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

const tagPrefix = "... "

type record map[string]string

// parseTagged splits `p4 -ztag` output into records. A record starts at every
// occurrence of startKey; lines without the tag prefix continue the previous value.
func parseTagged(output, startKey string) []record {
	var (
		out     []record
		current record
		lastKey string
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, tagPrefix) {
			if current != nil && lastKey != "" {
				current[lastKey] += "\n" + line
			}
			continue
		}

		key, value, _ := strings.Cut(line[len(tagPrefix):], " ")
		if key == startKey || current == nil {
			current = record{}
			out = append(out, current)
		}
		current[key] = value
		lastKey = key
	}
	for _, r := range out {
		for k, v := range r {
			r[k] = strings.TrimRight(v, "\n")
		}
	}
	return out
}

func (r record) int(key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r[key]))
	return n
}

func (r record) time(key string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(r[key]), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
