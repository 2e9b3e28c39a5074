package tenant

import "log/slog"

// Context is the fully-resolved tenant identity for one request. It is
// request-scoped and derived, never persisted or shared across requests.
// DatabaseURL and DatabaseKey are decrypted plaintext and must never be
// logged or serialized into a response; LogValue and String keep them out
// of accidental output.
type Context struct {
	TenantID    string
	Subdomain   string
	CompanyName string
	DatabaseURL string
	DatabaseKey string
	IsActive    bool
}

// IsDemo reports whether this is the demo sentinel context.
func (c *Context) IsDemo() bool {
	return c.TenantID == DemoTenantID
}

// LogValue implements slog.LogValuer with secrets redacted.
func (c *Context) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tenant_id", c.TenantID),
		slog.String("subdomain", c.Subdomain),
		slog.Bool("is_active", c.IsActive),
		slog.Bool("is_demo", c.IsDemo()),
	)
}

func (c *Context) String() string {
	return "tenant.Context{" + c.TenantID + "/" + c.Subdomain + "}"
}

// DemoContext builds the constant demo tenant context. The database URL
// and key come from configuration, so local operation never touches the
// registry.
func DemoContext(databaseURL, databaseKey string) *Context {
	return &Context{
		TenantID:    DemoTenantID,
		Subdomain:   DemoTenantID,
		CompanyName: "Demo",
		DatabaseURL: databaseURL,
		DatabaseKey: databaseKey,
		IsActive:    true,
	}
}
