/*
Package dsl provides a fluent builder for constructing workflow definitions in
Go instead of authoring JSON documents. This is useful for tests, for embedded
deployments that ship their policies compiled in, and for IDE-checked policy
authoring.

Example usage:

	wismo := dsl.Workflow("WISMO").
		Rule("need_order_id").
		When(dsl.Field("order_id").IsNull()).
		AskClarifying("Could you share your order number?").
		Done().
		Rule("check_status").
		When(dsl.Field("shipping_status").IsNull()).
		CallTool("check_order_status", map[string]string{"order_id": "context.order_id"}).
		Done().
		FallbackEscalate("Outside automated policy")

	loader := dsl.BuildLoader(wismo)
*/
package dsl
