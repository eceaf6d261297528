package search

import (
	"errors"
	"strings"

	"github.com/BENZOOgataga/DeepSearch/internal/platform"
)

// ErrNoChannels is returned when an explicit include list resolves to
// nothing readable.
var ErrNoChannels = errors.New("none of the specified channels were found or accessible")

// ResolveChannels produces the ordered channel set a job will walk.
// Include specifiers win over exclude specifiers when both are given;
// specifiers not found or unreadable are silently dropped; with no
// specifiers every readable channel is returned in workspace order.
func ResolveChannels(all []platform.Channel, include, exclude []string) ([]platform.Channel, error) {
	if len(include) > 0 {
		var out []platform.Channel
		for _, spec := range include {
			if ch, ok := findChannel(all, spec); ok && ch.CanRead {
				out = append(out, ch)
			}
		}
		if len(out) == 0 {
			return nil, ErrNoChannels
		}
		return out, nil
	}

	var out []platform.Channel
	for _, ch := range all {
		if !ch.CanRead {
			continue
		}
		if len(exclude) > 0 && matchesAny(ch, exclude) {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// findChannel resolves one specifier: a mention ("<#id>"), a raw ID, or a
// name with optional leading "#".
func findChannel(all []platform.Channel, spec string) (platform.Channel, bool) {
	spec = strings.TrimSpace(spec)
	if id, ok := parseMention(spec); ok {
		spec = id
	}
	name := strings.TrimPrefix(spec, "#")
	for _, ch := range all {
		if ch.ID == spec || ch.Name == name {
			return ch, true
		}
	}
	return platform.Channel{}, false
}

func matchesAny(ch platform.Channel, specs []string) bool {
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if id, ok := parseMention(spec); ok {
			spec = id
		}
		if ch.ID == spec || ch.Name == strings.TrimPrefix(spec, "#") {
			return true
		}
	}
	return false
}

func parseMention(spec string) (string, bool) {
	if strings.HasPrefix(spec, "<#") && strings.HasSuffix(spec, ">") {
		return spec[2 : len(spec)-1], true
	}
	return "", false
}
