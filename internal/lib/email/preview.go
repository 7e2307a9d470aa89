package email

// PreviewData holds sample template data for rendering templates locally:
//
//	PreviewData[TemplateWelcome]["UserName"] == "Ada"
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"UserName": "Ada",
	},
}
