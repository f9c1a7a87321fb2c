/*
Package security groups the archivist's access and credential handling.

  - auth: trusted identity headers, the admin role and per-table grants.
  - secrets: ${secret:name} resolution in database DSNs.
  - tls: HTTPS for the API listener with certificate reload.
*/
package security
