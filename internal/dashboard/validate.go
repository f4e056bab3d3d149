package dashboard

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure of an AppConfig.
var ErrInvalidConfig = errors.New("dashboard: invalid config")

var validate = validator.New()

// Validate checks required fields and the uniqueness of page slugs, widget
// ids and filter ids within a table.
func Validate(cfg AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	slugs := make(map[string]struct{}, len(cfg.Pages))
	widgets := map[string]struct{}{}
	for _, page := range cfg.Pages {
		if _, dup := slugs[page.Slug]; dup {
			return fmt.Errorf("%w: duplicate page slug %q", ErrInvalidConfig, page.Slug)
		}
		slugs[page.Slug] = struct{}{}

		for _, widget := range page.Widgets {
			if _, dup := widgets[widget.ID]; dup {
				return fmt.Errorf("%w: duplicate widget id %q", ErrInvalidConfig, widget.ID)
			}
			widgets[widget.ID] = struct{}{}

			filters := make(map[string]struct{}, len(widget.Filters()))
			for _, filter := range widget.Filters() {
				if _, dup := filters[filter.ID]; dup {
					return fmt.Errorf("%w: widget %q declares filter %q twice", ErrInvalidConfig, widget.ID, filter.ID)
				}
				filters[filter.ID] = struct{}{}
			}
		}
	}
	return nil
}
