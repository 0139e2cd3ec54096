package browser

import (
	"encoding/json"
	"fmt"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
)

const restoredFlag = "__tableharvester_restored"

// localStorageExpr evaluates to a JSON string describing the localStorage
// of the current document, or "" when storage is not accessible.
const localStorageExpr = `(() => {
  try {
    const items = [];
    for (let i = 0; i < window.localStorage.length; i++) {
      const name = window.localStorage.key(i);
      items.push({ name: name, value: window.localStorage.getItem(name) });
    }
    return JSON.stringify({ origin: window.location.origin, localStorage: items });
  } catch (e) {
    return '';
  }
})()`

// restoreScript builds a script that seeds localStorage for matching origins
// before the page's own scripts run. The seed is applied once per tab so the
// application may change storage afterwards. An empty string means there is
// nothing to restore.
func restoreScript(origins []entity.OriginState) (string, error) {
	seed := make([]entity.OriginState, 0, len(origins))
	for _, o := range origins {
		if len(o.LocalStorage) > 0 {
			seed = append(seed, o)
		}
	}
	if len(seed) == 0 {
		return "", nil
	}
	data, err := json.Marshal(seed)
	if err != nil {
		return "", fmt.Errorf("encode localStorage seed: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const origins = %s;
  try {
    if (window.sessionStorage.getItem(%s)) return;
    for (const o of origins) {
      if (o.origin !== window.location.origin) continue;
      for (const item of (o.localStorage || [])) {
        window.localStorage.setItem(item.name, item.value);
      }
    }
    window.sessionStorage.setItem(%s, '1');
  } catch (e) {}
})();`, data, jsString(restoredFlag), jsString(restoredFlag)), nil
}

// decodeOrigin parses the result of localStorageExpr.
func decodeOrigin(raw string) (*entity.OriginState, error) {
	if raw == "" {
		return nil, nil
	}
	var origin entity.OriginState
	if err := json.Unmarshal([]byte(raw), &origin); err != nil {
		return nil, fmt.Errorf("decode localStorage snapshot: %w", err)
	}
	if origin.Origin == "" || origin.Origin == "null" {
		return nil, nil
	}
	if origin.LocalStorage == nil {
		origin.LocalStorage = []entity.NameValue{}
	}
	return &origin, nil
}

// mergeOrigin replaces the entry for o.Origin or appends it.
func mergeOrigin(origins []entity.OriginState, o *entity.OriginState) []entity.OriginState {
	if o == nil {
		return origins
	}
	for i := range origins {
		if origins[i].Origin == o.Origin {
			origins[i] = *o
			return origins
		}
	}
	return append(origins, *o)
}
