package mqtt

import "strings"

// Topics builds topic names under one prefix.
type Topics struct {
	Prefix string
}

// Status is the retained online/offline topic, also used for the last will.
func (t Topics) Status() string {
	return t.join("status")
}

// ModeActivation carries one execution record per activation.
func (t Topics) ModeActivation(mode string) string {
	return t.join("mode", topicSegment(mode), "activation")
}

// VolumeState is the retained volume topic.
func (t Topics) VolumeState() string {
	return t.join("volume", "state")
}

// Health carries health monitor samples.
func (t Topics) Health() string {
	return t.join("health")
}

func (t Topics) join(parts ...string) string {
	prefix := strings.Trim(strings.TrimSpace(t.Prefix), "/")
	if prefix == "" {
		prefix = "modus"
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// topicSegment lowercases a mode name and strips characters MQTT reserves in topic levels.
func topicSegment(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '+', '#', 0:
			continue
		case ' ', '\t':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
