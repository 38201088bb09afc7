package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:answer",
		"attempt:submit",
		"attempt:view-own",
		"submission:view-own",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"quiz:view-keys",
		"attempt:create", // teacher preview runs through the same start path
		"attempt:answer",
		"attempt:view-own",
		"submission:view-all",
		"submission:grade",
		"lock:clear",
	},
	"admin": {
		"*", // everything
	},
}
