package param

import (
	"errors"
	"fmt"
)

// Login 登录表单相关定位器
type Login struct {
	// Indicator is visible only while the user is signed out.
	Indicator  Locator   `json:"indicator" mapstructure:"indicator"`
	Identifier Locator   `json:"identifier" mapstructure:"identifier"`
	Secret     Locator   `json:"secret" mapstructure:"secret"`
	// Submit candidates are tried in order; the first visible one is clicked.
	Submit []Locator `json:"submit" mapstructure:"submit"`
}

func (l *Login) Validate() error {
	fields := []struct {
		name string
		loc  Locator
	}{
		{"indicator", l.Indicator},
		{"identifier", l.Identifier},
		{"secret", l.Secret},
	}
	for _, f := range fields {
		if err := f.loc.Validate(); err != nil {
			return fmt.Errorf("login.%s: %w", f.name, err)
		}
	}
	if len(l.Submit) == 0 {
		return errors.New("login.submit: at least one candidate is required")
	}
	for i, loc := range l.Submit {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("login.submit[%d]: %w", i, err)
		}
	}
	return nil
}

// Navigation 从登录后页面到达数据表的点击路径
type Navigation struct {
	// Launch is optional; a zero Locator disables the launch probe.
	Launch Locator   `json:"launch" mapstructure:"launch"`
	Steps  []Locator `json:"steps" mapstructure:"steps"`
	// Table is the container whose visibility marks the end of navigation.
	Table Locator `json:"table" mapstructure:"table"`
}

func (n *Navigation) Validate() error {
	if !n.Launch.IsZero() {
		if err := n.Launch.Validate(); err != nil {
			return fmt.Errorf("navigation.launch: %w", err)
		}
	}
	for i, loc := range n.Steps {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("navigation.steps[%d]: %w", i, err)
		}
	}
	if err := n.Table.Validate(); err != nil {
		return fmt.Errorf("navigation.table: %w", err)
	}
	return nil
}

// Table 表格抓取选择器
type Table struct {
	Headers string  `json:"headers" mapstructure:"headers"`
	Rows    string  `json:"rows" mapstructure:"rows"`
	Cells   string  `json:"cells" mapstructure:"cells"`
	Next    Locator `json:"next" mapstructure:"next"`
}

func (t *Table) Validate() error {
	switch {
	case t.Headers == "":
		return errors.New("table.headers is empty")
	case t.Rows == "":
		return errors.New("table.rows is empty")
	case t.Cells == "":
		return errors.New("table.cells is empty")
	}
	if err := t.Next.Validate(); err != nil {
		return fmt.Errorf("table.next: %w", err)
	}
	return nil
}
