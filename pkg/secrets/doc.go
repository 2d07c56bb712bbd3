// Package secrets resolves ${secret:name} references found in configuration
// values.
//
// A Manager tries its providers in order and caches what they return:
//
//   - EnvProvider reads TAILOR_SECRET_<NAME> environment variables
//     ("gemini-api-key" becomes TAILOR_SECRET_GEMINI_API_KEY).
//   - FileProvider reads one file per secret from a directory, the layout
//     used by Kubernetes secret volumes. Files must be mode 0600 or 0400.
//     With watching enabled, writes to the directory clear both the
//     provider's and the manager's caches.
//
// Most values are resolved once at startup. The static-mode token key is
// resolved on every validation so a rotated file takes effect without a
// restart.
//
// Example:
//
//	file, err := secrets.NewFileProvider("/run/secrets", true)
//	if err != nil {
//		return err
//	}
//	m := secrets.NewManager([]secrets.Provider{secrets.NewEnvProvider(""), file}, 5*time.Minute)
//	file.OnChange(m.Invalidate)
//
//	key, err := m.Resolve(ctx, cfg.Generative.APIKey)
package secrets
