package models

// Well-known container GUIDs from Active Directory.
const (
	GUIDUsersContainer                     = "AA312825768811D1ADED00C04FD8D5CD"
	GUIDComputersContainer                 = "AA312826768811D1ADED00C04FD8D5CD"
	GUIDDomainControllersContainer         = "AA312827768811D1ADED00C04FD8D5CD"
	GUIDProgramDataContainer               = "0AC9503533DE45899044C51926617F76"
	GUIDForeignSecurityPrincipalsContainer = "E48D0154BCC811D19D7A00C04FD8D5CD"
)

// WellKnownContainers maps well-known GUIDs to container DNs under a domain.
type WellKnownContainers struct {
	containers map[string]string
}

// NewWellKnownContainers builds the standard container set for domainDN.
func NewWellKnownContainers(domainDN string) *WellKnownContainers {
	return &WellKnownContainers{
		containers: map[string]string{
			GUIDUsersContainer:                     "CN=Users," + domainDN,
			GUIDComputersContainer:                 "CN=Computers," + domainDN,
			GUIDDomainControllersContainer:         "CN=Domain Controllers," + domainDN,
			GUIDProgramDataContainer:               "CN=Program Data," + domainDN,
			GUIDForeignSecurityPrincipalsContainer: "CN=ForeignSecurityPrincipals," + domainDN,
		},
	}
}

// Get returns the DN for guid, if known.
func (w *WellKnownContainers) Get(guid string) (string, bool) {
	dn, ok := w.containers[guid]
	return dn, ok
}

// List returns all GUID to DN pairs.
func (w *WellKnownContainers) List() map[string]string {
	out := make(map[string]string, len(w.containers))
	for k, v := range w.containers {
		out[k] = v
	}
	return out
}

// IsWellKnownDN reports whether dn names one of the standard containers.
func (w *WellKnownContainers) IsWellKnownDN(dn string) bool {
	for _, known := range w.containers {
		if known == dn {
			return true
		}
	}
	return false
}
