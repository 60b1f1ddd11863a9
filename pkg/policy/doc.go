// Package policy provides Open Policy Agent (OPA) integration for Sealrunner.
//
// This package implements policy enforcement for infrastructure configurations,
// plans, and operations using the Rego policy language. It includes built-in
// policies for common governance requirements and supports custom policy loading.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Evaluating a resource:
//
//	resource := &engine.Resource{
//	    ID:   "web-server",
//	    Name: "web-server-prod",
//	    Labels: map[string]string{
//	        "env":   "production",
//	        "owner": "platform-team",
//	    },
//	}
//
//	result, err := engine.EvaluateResource(ctx, resource)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/froyo/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. resource-naming - Enforces resource naming conventions
//  2. required-labels - Ensures critical labels (env, owner) are present
//  3. state-drift - Maximum acceptable drift threshold
//  4. operation-restrictions - Prevents destructive operations in production
//  5. provider-versioning - Enforces minimum provider versions
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.backup
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.resource
//	    resource := input.resource
//
//	    # Require backup label for production resources
//	    resource.labels.env == "production"
//	    not resource.labels.backup
//
//	    violation := {
//	        "message": "Production resources must have a backup label",
//	        "severity": "error",
//	        "resource": resource.id,
//	    }
//	}
//
// # Policy Evaluation Points
//
// The engine has three evaluation entry points:
//
//  1. Evaluate - every resource of a configuration
//  2. EvaluatePlan - a whole plan
//  3. EvaluateResource - a single resource
//
// None of Sealrunner's compile or deploy stages call them.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational messages
//  - warning: Issues that should be reviewed but don't block operations
//  - error: Issues that block operations
//  - critical: Severe issues requiring immediate attention
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Each policy is parsed and prepared once, when it is loaded, so malformed
// Rego is rejected up front. Every evaluation builds a fresh rego query from
// the policy source; the prepared query is not reused. The loader caches
// parsed policy files by path until the file changes or ClearCache is called.
//
// # Context Injection
//
// Policy evaluations can include context information:
//
//  - User: Who initiated the operation
//  - Environment: Target environment (production, staging, etc.)
//  - Operation: Type of operation (create, update, delete)
//  - Timestamp: When the evaluation occurred
//  - Dry run: Whether this is a dry-run evaluation
//
// This context allows policies to make environment-aware decisions.
package policy
