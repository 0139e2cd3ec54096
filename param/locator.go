package param

import (
	"errors"
	"fmt"
)

// LocatorKind 定位方式
type LocatorKind string

const (
	LocatorRole        LocatorKind = "role"
	LocatorLabel       LocatorKind = "label"
	LocatorPlaceholder LocatorKind = "placeholder"
	LocatorCSS         LocatorKind = "css"
)

// Locator 页面元素定位器,按可访问角色+名称、标签、占位符或CSS选择器查找元素
type Locator struct {
	Kind     LocatorKind `json:"kind" mapstructure:"kind"`
	Role     string      `json:"role,omitempty" mapstructure:"role"`
	Name     string      `json:"name,omitempty" mapstructure:"name"`
	Selector string      `json:"selector,omitempty" mapstructure:"selector"`
}

func Role(role, name string) Locator {
	return Locator{Kind: LocatorRole, Role: role, Name: name}
}

func Label(text string) Locator {
	return Locator{Kind: LocatorLabel, Name: text}
}

func Placeholder(text string) Locator {
	return Locator{Kind: LocatorPlaceholder, Name: text}
}

func CSS(selector string) Locator {
	return Locator{Kind: LocatorCSS, Selector: selector}
}

func (l Locator) IsZero() bool {
	return l == Locator{}
}

func (l Locator) Validate() error {
	switch l.Kind {
	case LocatorRole:
		if l.Role == "" {
			return errors.New("role locator requires a role")
		}
	case LocatorLabel, LocatorPlaceholder:
		if l.Name == "" {
			return fmt.Errorf("%s locator requires a name", l.Kind)
		}
	case LocatorCSS:
		if l.Selector == "" {
			return errors.New("css locator requires a selector")
		}
	case "":
		return errors.New("locator kind is empty")
	default:
		return fmt.Errorf("unknown locator kind %q", l.Kind)
	}
	return nil
}

// String renders the locator for log lines.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorRole:
		if l.Name == "" {
			return fmt.Sprintf("role=%s", l.Role)
		}
		return fmt.Sprintf("role=%s[name=%q]", l.Role, l.Name)
	case LocatorCSS:
		return fmt.Sprintf("css=%s", l.Selector)
	default:
		return fmt.Sprintf("%s=%q", l.Kind, l.Name)
	}
}
