package bucketry

// CallContext exposes the components of a Service to the dispatcher for a
// single call. It is built by the Service right before dispatching and must
// not be retained after Dispatch returns.
type CallContext struct {
	dispatcher Dispatcher
	host       Host
	auth       Auth
	access     Access
	route      Route
}

// Dispatcher returns the dispatcher handling the call.
func (c *CallContext) Dispatcher() Dispatcher {
	return c.dispatcher
}

// Host returns the host role, if configured.
func (c *CallContext) Host() (Host, bool) {
	return c.host, c.host != nil
}

// Auth returns the auth role, if configured.
func (c *CallContext) Auth() (Auth, bool) {
	return c.auth, c.auth != nil
}

// Access returns the access role, if configured.
func (c *CallContext) Access() (Access, bool) {
	return c.access, c.access != nil
}

// Route returns the route role, if configured.
func (c *CallContext) Route() (Route, bool) {
	return c.route, c.route != nil
}
