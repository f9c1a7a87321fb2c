/*
Package secrets resolves ${secret:name} references in connection strings.

Database DSNs in the configuration may embed references instead of literal
credentials:

	source:
	  driver: pgx
	  dsn: postgres://archivist:${secret:source-password}@db:5432/app

A Manager consults its providers in order and caches each resolved value in
an expiring LRU:

  - FileProvider reads one file per secret from a directory (Kubernetes
    secret volumes). Files must be mode 0600 or 0400.
  - EnvProvider reads ARCHIVIST_SECRET_<NAME>, with hyphens mapped to
    underscores. It supports every name and acts as the fallback.

Usage:

	m, err := secrets.NewManagerFromConfig(&cfg.Security.Secrets)
	if err != nil {
		return err
	}
	dsn, err := m.ResolveReferences(ctx, cfg.Source.DSN)

Secret names are redacted in log output.
*/
package secrets
