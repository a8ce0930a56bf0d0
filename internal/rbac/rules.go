package rbac

// Default policy. Students play and save; teachers author, assign and grade.
var RolePermissions = map[string][]string{
	"student": {
		"material:view",
		"assignment:view-own",
		"assignment:autosave",
		"assignment:submit",
		"game:complete",
		"media:tts",
		"library:search",
		"user:change_password",
	},
	"teacher": {
		"material:view",
		"material:create",
		"material:generate",
		"assignment:view-all",
		"assignment:create",
		"assignment:grade",
		"media:tts",
		"media:image",
		"library:search",
		"library:ingest",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
