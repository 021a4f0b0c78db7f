package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"resource:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:retry",
		"attempt:view-own",
		"progress:view-own",
		"user:change_password",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"resource:view",
		"resource:upload",
		"attempt:view-all",
		"progress:view-all",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
