package cart

// groupByStore keeps the row order of the first appearance of every store.
func groupByStore(rows []summaryRow) []*StoreGroup {
	groups := make([]*StoreGroup, 0)
	index := make(map[int64]*StoreGroup)

	for _, r := range rows {
		g, ok := index[r.StoreID]
		if !ok {
			g = &StoreGroup{
				Store: StoreRef{ID: r.StoreID, Slug: r.StoreSlug, Name: r.StoreName},
				Items: make([]CartItem, 0),
			}
			index[r.StoreID] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, r.CartItem)
		g.Total += r.LineTotal()
	}

	return groups
}
