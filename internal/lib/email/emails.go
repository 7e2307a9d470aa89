package email

import "context"

// SendWelcomeEmail sends the welcome email to a newly registered user.
func (c *Client) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return c.SendEmail(ctx, to, "Welcome to Layered API!", TemplateWelcome, map[string]string{
		"UserName": name,
	})
}
