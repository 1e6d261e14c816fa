package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"learner": {
		"progression:view",
		"submission:start",
		"submission:confirm",
		"submission:complete",
		"submission:view-own",
	},
	"author": {
		"progression:view",
		"progression:author",
		"document:upload",
		"document:generate",
		"submission:view-all",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
