// Package stacks declares the infrastructure as a set of Pulumi component
// resources. Each component plays the part of an independently named stack and
// exposes the handles its dependents need.
package stacks

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const typePrefix = "devopsrepohq:rds"

// componentType returns the type token for a stack component.
func componentType(kind string) string {
	return fmt.Sprintf("%s:%s", typePrefix, kind)
}

// childName prefixes a resource name with the kebab-cased stack name so that
// resources stay unique across the whole program.
func childName(stack, suffix string) string {
	return strcase.ToKebab(stack) + "-" + suffix
}

// RemovalPolicy decides what happens to a resource when its stack is destroyed.
type RemovalPolicy int

const (
	RemovalPolicyDestroy RemovalPolicy = iota
	RemovalPolicyRetain
)

func (p RemovalPolicy) option() pulumi.ResourceOption {
	return pulumi.RetainOnDelete(p == RemovalPolicyRetain)
}
