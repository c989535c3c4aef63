package dsl

import "github.com/resolvd/resolvd/pkg/domain"

// FieldRef names a case-context field inside a condition.
type FieldRef string

// Field starts a leaf condition on the named context field.
func Field(name string) FieldRef {
	return FieldRef(name)
}

// IsNull matches when the field is absent, nil, or empty.
func (f FieldRef) IsNull() domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpIsNull}
}

// IsNotNull matches when the field carries a value.
func (f FieldRef) IsNotNull() domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpIsNotNull}
}

// Equals matches on loose stringified equality.
func (f FieldRef) Equals(value any) domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpEquals, Value: value}
}

// NotEquals is the negation of Equals.
func (f FieldRef) NotEquals(value any) domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpNotEquals, Value: value}
}

// In matches when the field equals any of the listed values.
func (f FieldRef) In(values ...any) domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpIn, Value: values}
}

// NotIn is the negation of In.
func (f FieldRef) NotIn(values ...any) domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpNotIn, Value: values}
}

// Contains matches when the field's string form contains the substring.
func (f FieldRef) Contains(value any) domain.Condition {
	return domain.Condition{Field: string(f), Operator: domain.OpContains, Value: value}
}

// All matches when every sub-condition matches.
func All(conds ...domain.Condition) domain.Condition {
	return domain.Condition{All: conds}
}

// Any matches when at least one sub-condition matches.
func Any(conds ...domain.Condition) domain.Condition {
	return domain.Condition{Any: conds}
}
