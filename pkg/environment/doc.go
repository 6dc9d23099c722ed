// Package environment carries the deployment environment through contexts.
//
//	env := environment.Parse(cfg.Env)
//	ctx = environment.WithContext(ctx, env)
//	if environment.IsProduction(ctx) {
//		// ...
//	}
//
// Middleware attaches the environment to every HTTP request and
// LoggerExtractor exposes it to pkg/logger.
package environment
