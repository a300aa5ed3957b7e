package catalog

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
)

// ActorRef accepts the heterogeneous shapes the dashboard has historically
// sent for cast members: a bare string, or an object with a name field.
type ActorRef struct {
	Name string
}

func (a *ActorRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		FullName string `json:"fullName"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "actor entry must be a name or an object")
	}
	if obj.Name != "" {
		a.Name = obj.Name
	} else {
		a.Name = obj.FullName
	}
	return nil
}

func (a ActorRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Name)
}

// normalizeActors flattens the refs into trimmed, de-duplicated names,
// dropping empties.
func normalizeActors(refs []ActorRef) []string {
	names := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		name := strings.Join(strings.Fields(ref.Name), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}
