package bmc

import (
	"testing"
)

func TestIPMIBMCHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hostname string
		want     string
	}{
		{name: "fqdn gets oob spliced after the host label", hostname: "cpu1.example.org", want: "cpu1.oob.example.org"},
		{name: "short hostname gets oob appended", hostname: "cpu1", want: "cpu1.oob"},
		{name: "deep fqdn only splices once", hostname: "cpu1.rack2.example.org", want: "cpu1.oob.rack2.example.org"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			iface := NewIPMI(tt.hostname, Credentials{User: "admin", Password: "secret"})
			if got := iface.BMC(); got != tt.want {
				t.Fatalf("BMC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	auth := Credentials{User: "admin", Password: "secret"}

	tests := []struct {
		name    string
		iface   string
		auth    Credentials
		wantErr bool
	}{
		{name: "known interface", iface: "IPMI", auth: auth},
		{name: "redfish interface", iface: "Redfish", auth: auth},
		{name: "unknown interface", iface: "SNMP", auth: auth, wantErr: true},
		{name: "missing user", iface: "IPMI", auth: Credentials{Password: "secret"}, wantErr: true},
		{name: "missing password", iface: "IPMI", auth: Credentials{User: "admin"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.iface, "cpu1.example.org", tt.auth)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %t", tt.iface, err, tt.wantErr)
			}
		})
	}
}

func TestKnown(t *testing.T) {
	t.Parallel()

	known := Known()
	if len(known) != 2 || known[0] != "IPMI" || known[1] != "Redfish" {
		t.Fatalf("Known() = %v, want [IPMI Redfish]", known)
	}
}
