package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SavedTransportParams is the plain-text key=value persisted form of
// spec.md §6 "Persisted state: Optional transport-parameters file". It is
// deliberately simpler than the TLV wire format in quic/transportparams.go
// — this file is never sent over the wire, only read back by this process
// on the next run to pre-size a 0-RTT attempt.
type SavedTransportParams struct {
	InitialMaxStreamData uint64
	InitialMaxData       uint64
	IdleTimeoutSeconds   uint64
	MaxStreamIDBidi      uint64
	MaxStreamIDUni       uint64
}

// LoadTransportParams reads key=value lines from path.
func LoadTransportParams(path string) (*SavedTransportParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &SavedTransportParams{}
	fields := map[string]*uint64{
		"initial_max_stream_data": &p.InitialMaxStreamData,
		"initial_max_data":        &p.InitialMaxData,
		"idle_timeout":            &p.IdleTimeoutSeconds,
		"max_stream_id_bidi":      &p.MaxStreamIDBidi,
		"max_stream_id_uni":       &p.MaxStreamIDUni,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("config: malformed transport-params line %q", line)
		}
		dst, ok := fields[strings.TrimSpace(kv[0])]
		if !ok {
			continue // unknown keys are ignored, same tolerance as the wire TLV decoder
		}
		v, err := strconv.ParseUint(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: bad value for %q: %w", kv[0], err)
		}
		*dst = v
	}
	return p, scanner.Err()
}

// SaveTransportParams writes p to path in key=value form.
func SaveTransportParams(path string, p *SavedTransportParams) error {
	var b strings.Builder
	fmt.Fprintf(&b, "initial_max_stream_data=%d\n", p.InitialMaxStreamData)
	fmt.Fprintf(&b, "initial_max_data=%d\n", p.InitialMaxData)
	fmt.Fprintf(&b, "idle_timeout=%d\n", p.IdleTimeoutSeconds)
	fmt.Fprintf(&b, "max_stream_id_bidi=%d\n", p.MaxStreamIDBidi)
	fmt.Fprintf(&b, "max_stream_id_uni=%d\n", p.MaxStreamIDUni)
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
