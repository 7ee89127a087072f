package replay

import (
	"sort"
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// appendKey appends `"key":` to dst, quoting/escaping key with jsonenc the
// same way every string value is escaped — field names are just strings
// that happen to be known at compile time.
func appendKey(dst []byte, key string) []byte {
	dst = jsonenc.AppendString(dst, key)
	return append(dst, ':')
}

func appendStringField(dst []byte, key, val string, comma bool) []byte {
	dst = appendKey(dst, key)
	dst = jsonenc.AppendString(dst, val)
	if comma {
		dst = append(dst, ',')
	}
	return dst
}

func appendIntField(dst []byte, key string, val int64, comma bool) []byte {
	dst = appendKey(dst, key)
	dst = strconv.AppendInt(dst, val, 10)
	if comma {
		dst = append(dst, ',')
	}
	return dst
}

func appendBoolField(dst []byte, key string, val bool, comma bool) []byte {
	dst = appendKey(dst, key)
	dst = strconv.AppendBool(dst, val)
	if comma {
		dst = append(dst, ',')
	}
	return dst
}

func appendRegion(dst []byte, region [2]int, comma bool) []byte {
	dst = appendKey(dst, "region")
	dst = append(dst, '[')
	dst = strconv.AppendInt(dst, int64(region[0]), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(region[1]), 10)
	dst = append(dst, ']')
	if comma {
		dst = append(dst, ',')
	}
	return dst
}

func appendAgentView(dst []byte, a AgentView) []byte {
	dst = append(dst, '{')
	dst = appendStringField(dst, "id", a.ID, true)
	dst = appendIntField(dst, "pc", int64(a.PC), true)
	dst = appendBoolField(dst, "alive", a.Alive, true)
	dst = appendIntField(dst, "cpu_used", int64(a.CPUUsed), true)
	dst = appendIntField(dst, "mem_writes", int64(a.MemWrites), true)
	dst = appendRegion(dst, a.Region, false)
	dst = append(dst, '}')
	return dst
}

func appendScore(dst []byte, score map[string]int) []byte {
	ids := make([]string, 0, len(score))
	for id := range score {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dst = append(dst, '{')
	for i, id := range ids {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendIntField(dst, id, int64(score[id]), false)
	}
	dst = append(dst, '}')
	return dst
}

func appendEvent(dst []byte, e Event) []byte {
	dst = append(dst, '{')
	dst = appendStringField(dst, "type", e.Type, true)
	dst = appendStringField(dst, "victim", e.Victim, e.By != "")
	if e.By != "" {
		dst = appendStringField(dst, "by", e.By, false)
	}
	dst = append(dst, '}')
	return dst
}

func appendMemoryDiff(dst []byte, d MemoryDiff) []byte {
	dst = append(dst, '{')
	dst = appendIntField(dst, "addr", int64(d.Addr), true)
	dst = appendIntField(dst, "len", int64(d.Len), true)
	dst = appendStringField(dst, "owner", d.Owner, false)
	dst = append(dst, '}')
	return dst
}

// AppendTickRecord appends the compact single-line JSON encoding of rec to
// dst (no trailing newline).
func AppendTickRecord(dst []byte, rec *TickRecord) []byte {
	dst = append(dst, '{')
	dst = appendIntField(dst, "tick", int64(rec.Tick), true)

	dst = appendKey(dst, "agents")
	dst = append(dst, '[')
	for i, a := range rec.Agents {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendAgentView(dst, a)
	}
	dst = append(dst, ']', ',')

	dst = appendKey(dst, "score")
	dst = appendScore(dst, rec.Score)
	dst = append(dst, ',')

	dst = appendKey(dst, "events")
	dst = append(dst, '[')
	for i, e := range rec.Events {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendEvent(dst, e)
	}
	dst = append(dst, ']', ',')

	dst = appendKey(dst, "memory_diffs")
	dst = append(dst, '[')
	for i, d := range rec.MemoryDiffs {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendMemoryDiff(dst, d)
	}
	dst = append(dst, ']')

	dst = append(dst, '}')
	return dst
}

// AppendHeader appends the compact single-line JSON encoding of the header
// record to dst (no trailing newline). The config object is encoded via
// encoding/json (see doc.go) since it is a one-off, not a hot-path record.
func AppendHeader(dst []byte, h *Header) []byte {
	dst = append(dst, '{')
	dst = appendIntField(dst, "tick", 0, true)
	dst = appendIntField(dst, "ver", int64(h.Ver), true)
	dst = appendKey(dst, "config")
	dst = appendConfig(dst, h.Config)
	dst = append(dst, '}')
	return dst
}
