// Package response builds handler.Response values for the HTTP API.
//
// JSON bodies are encoded directly to the writer. Errors are expressed as
// HTTPError values with a machine-readable code; JSONErrorHandler renders any
// error, mapping StatusCode() implementations to the predefined errors:
//
//	return response.Error(response.ErrNotFound.WithMessage("event not found"))
//
// renders
//
//	404 {"code":"not_found","message":"event not found"}
package response
