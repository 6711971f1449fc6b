package v1

import "errors"

var (
	errCategoryNameTaken = errors.New("a category with this name already exists")
	errRuleCategory      = errors.New("the rule must reference a category you own")
	errRuleAccount       = errors.New("the rule must reference an account you own")
)
