package flowcontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/lifecycle"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

func newTestPool(t *testing.T) (*vnf.Pool, func(vnf.VNFType) (*vnf.Pool, bool)) {
	machines := lifecycle.NewInstanceManager()
	pool := vnf.NewPool("firewall", 1, 5, machines)
	lookup := func(vt vnf.VNFType) (*vnf.Pool, bool) {
		if vt == "firewall" {
			return pool, true
		}
		return nil, false
	}
	return pool, lookup
}

func TestAddRuleRejectsConflict(t *testing.T) {
	_, lookup := newTestPool(t)
	c := NewController(lookup)

	_, err := c.AddRule("firewall", "inst-1", 5)
	require.NoError(t, err)

	_, err = c.AddRule("firewall", "inst-1", 5)
	assert.Error(t, err)
}

func TestRemoveRuleForbiddenWhenLastAndReferenced(t *testing.T) {
	_, lookup := newTestPool(t)
	c := NewController(lookup)

	rule, err := c.AddRule("firewall", "inst-1", 5)
	require.NoError(t, err)

	c.IncChainRef("firewall")
	err = c.RemoveRule(rule.ID)
	assert.Error(t, err)

	c.DecChainRef("firewall")
	err = c.RemoveRule(rule.ID)
	assert.NoError(t, err)
}

func TestRemoveRuleAllowedWhenNotLast(t *testing.T) {
	_, lookup := newTestPool(t)
	c := NewController(lookup)

	r1, err := c.AddRule("firewall", "inst-1", 5)
	require.NoError(t, err)
	_, err = c.AddRule("firewall", "inst-2", 5)
	require.NoError(t, err)

	c.IncChainRef("firewall")
	assert.NoError(t, c.RemoveRule(r1.ID))
}

func TestNextInstanceErrorsWithNoInstances(t *testing.T) {
	pool, lookup := newTestPool(t)
	c := NewController(lookup)

	machines := lifecycle.NewInstanceManager()
	_ = machines

	_, err := c.NextInstance("firewall")
	assert.Error(t, err) // no instances registered yet

	_ = pool
}
