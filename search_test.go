package ldap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modulecore/ldap/ber"
	"github.com/modulecore/ldap/filter"
)

func TestEntryGetAttribute(t *testing.T) {
	e := &Entry{
		DN: "uid=bob,dc=example,dc=com",
		Attributes: []ber.PartialAttribute{
			{Type: "uid", Values: []string{"bob"}},
			{Type: "mail", Values: []string{"bob@example.com", "bob@other.com"}},
			{Type: "empty"},
		},
	}
	require.Equal(t, "bob", e.GetAttribute("uid"))
	require.Equal(t, "bob@example.com", e.GetAttribute("mail"))
	require.Equal(t, "", e.GetAttribute("empty"))
	require.Equal(t, "", e.GetAttribute("missing"))
}

func TestSearchOptionsResolveFilterDefaultsToPresentObjectClass(t *testing.T) {
	var opts SearchOptions
	f, err := opts.resolveFilter()
	require.NoError(t, err)
	require.Equal(t, "(objectClass=*)", f.String())
}

func TestSearchOptionsResolveFilterPrefersFilterOverString(t *testing.T) {
	explicit := filter.Equal("uid", "bob")
	opts := SearchOptions{Filter: explicit, FilterString: "(uid=carol)"}
	f, err := opts.resolveFilter()
	require.NoError(t, err)
	require.Same(t, explicit, f)
}

func TestSearchOptionsResolveFilterParsesFilterString(t *testing.T) {
	opts := SearchOptions{FilterString: "(&(objectClass=person)(uid=bob))"}
	f, err := opts.resolveFilter()
	require.NoError(t, err)
	require.Equal(t, "(&(objectClass=person)(uid=bob))", f.String())
}

func TestSearchSinkFailClosesChannelsAndRecordsErr(t *testing.T) {
	sink := newSearchSink()
	w := &searchSink{s: sink}

	w.entry(ber.SearchResultEntry{ObjectName: "uid=bob,dc=example,dc=com"})
	boom := &ProtocolError{Message: "boom"}
	w.fail(boom)

	<-sink.Done()
	require.ErrorIs(t, sink.Err(), boom)

	e, ok := <-sink.Entries
	require.True(t, ok)
	require.Equal(t, "uid=bob,dc=example,dc=com", e.DN)
	_, ok = <-sink.Entries
	require.False(t, ok, "Entries must be closed after fail")
}

func TestSearchSinkEndRecordsResult(t *testing.T) {
	sink := newSearchSink()
	w := &searchSink{s: sink}

	w.end(ber.LDAPResult{ResultCode: ber.ResultSuccess})

	<-sink.Done()
	require.NoError(t, sink.Err())
	require.Equal(t, ber.ResultSuccess, sink.Result().ResultCode)
}
