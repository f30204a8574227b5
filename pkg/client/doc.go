// Package client is a typed HTTP client for the storaged /v1 API.
//
//	c, err := client.New("http://localhost:8080", client.WithAPIKey(key), client.WithTenant("acme"))
//	if err != nil { ... }
//	err = c.Vectors("docs").Ensure(ctx, 3, client.MetricCosine)
//	res, err := c.Vectors("docs").Query(ctx, []float32{1, 0, 0}, 5)
//
// Errors returned by the server are *APIError; use IsNotFound, IsConflict
// and IsValidation to branch on them.
package client
