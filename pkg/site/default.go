package site

// Default returns the built-in profile of the target storefront.
func Default() Profile {
	return Profile{
		Name:         "mutevazipeynircilik",
		BaseURL:      "https://mutevazipeynircilik.com",
		CampaignPath: "/kampanyalar",
		Auth: Auth{
			Trigger: Cascade{
				Selectors: []string{
					"//div[contains(@class,'header')]//a[contains(text(),'Giriş') or contains(text(),'Üye')]",
					"//button[contains(@class,'login') or contains(@class,'auth')]//span[contains(text(),'Giriş')]",
					"//nav//li[contains(@class,'user')]//a",
					"//div[@id='header-actions']//a[contains(@href,'login') or contains(@href,'giris')]",
				},
				Fallback: "Giriş Yap",
			},
			Identifier: Cascade{
				Selectors: []string{
					"//input[@type='text' and (contains(@name,'email') or contains(@name,'user') or contains(@id,'email'))]",
					"//form//input[@type='email']",
					"//div[contains(@class,'login')]//input[1]",
					"//input[contains(@placeholder,'E-posta') or contains(@placeholder,'Kullanıcı')]",
				},
			},
			IdentifierGeneric: "input[type='email'], input[name*='user']",
			Password: Cascade{
				Selectors: []string{
					"//input[@type='password' and (contains(@name,'pass') or contains(@name,'pwd') or contains(@id,'pass'))]",
					"//form//input[@type='password']",
					"//div[contains(@class,'login')]//input[@type='password']",
				},
			},
			PasswordGeneric: "input[type='password']",
			Submit: Cascade{
				Selectors: []string{
					"//button[@type='submit' and (contains(text(),'Giriş') or contains(text(),'Oturum'))]",
					"//form//button[contains(@class,'submit') or contains(@class,'login')]",
					"//button[contains(@class,'btn-login') or contains(@class,'btn-auth')]//span[contains(text(),'Giriş')]",
					"//input[@type='submit' and contains(@value,'Giriş')]",
				},
				Fallback: "Giriş",
			},
		},
		Navigation: Navigation{
			CampaignLink: Cascade{
				Selectors: []string{
					"//nav//a[contains(translate(text(), 'KAMPANYALR', 'kampanyalr'), 'kampanyalar')]",
					"//div[contains(@class,'menu') or contains(@class,'nav')]//a[contains(@href,'kampanya')]",
					"//ul[contains(@class,'navigation')]//li//a[normalize-space()='Kampanyalar']",
					"//header//a[contains(text(),'Kampanya') or contains(text(),'KAMPANYA')]",
					"//div[@role='navigation']//a[contains(text(),'Kampanyalar')]",
				},
				Fallback: "Kampanyalar",
			},
			MenuTrigger: "//div[contains(@class,'menu')]//span[contains(text(),'Ürünler') or contains(text(),'Kategoriler')]",
			MenuItem:    "//div[contains(@class,'dropdown') or contains(@class,'submenu')]//a[contains(text(),'Kampanya')]",
		},
		Extraction: Extraction{
			Grid: []string{
				"//div[contains(@class,'campaign') or contains(@class,'promotion')]//div[contains(@class,'product')]",
				"//section[contains(@class,'kampanya')]//div[contains(@class,'item') or contains(@class,'card')]",
				"//div[@id='campaign-products']//div[contains(@class,'grid-item')]",
				"//main//article[contains(@class,'product') or contains(@class,'offer')]",
			},
			GridFallback: ".product-item, .campaign-card, .promo-box",
			Title: []string{
				".//h3[contains(@class,'title') or contains(@class,'name')]",
				".//div[contains(@class,'product-name')]//a",
				".//span[contains(@class,'title')]",
				".//a[contains(@class,'product-link')]",
			},
			OriginalPrice: []string{
				".//span[contains(@class,'old-price') or contains(@class,'original')]//span[contains(@class,'amount')]",
				".//del//span[contains(text(),'₺')]",
				".//s[contains(@class,'price')]",
				".//div[contains(@class,'price-before')]//span",
			},
			ReducedPrice: []string{
				".//span[contains(@class,'sale-price') or contains(@class,'special')]//span[contains(@class,'amount')]",
				".//strong[contains(@class,'price')]//span",
				".//div[contains(@class,'price-now')]//span[contains(text(),'₺')]",
				".//ins[contains(@class,'price')]//span",
			},
			Availability: []string{
				".//span[contains(@class,'stock') and contains(@class,'in')]",
				".//div[contains(@class,'available') or contains(text(),'Stokta')]",
				".//button[not(@disabled) and (contains(@class,'add-cart') or contains(@class,'sepet'))]",
			},
		},
	}
}
